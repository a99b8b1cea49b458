// SPDX-License-Identifier: MPL-2.0

// Command freezecheck freezes sample applications with the freezer under
// test and verifies that the frozen programs run.
package main

import cmd "freezecheck-cli/cmd/freezecheck"

func main() {
	cmd.Execute()
}
