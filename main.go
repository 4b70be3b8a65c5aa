// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/mf-maestro/maestro/cmd/maestro"

func main() {
	cmd.Execute()
}
