// contentiq is a terminal client for contentIQ chat agents.
package main

import "github.com/symplistic/contentiq-widget/cmd/contentiq/cmd"

func main() {
	cmd.Execute()
}
