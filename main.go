// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/eritbh/exby/cmd/exby"

func main() {
	cmd.Execute()
}
