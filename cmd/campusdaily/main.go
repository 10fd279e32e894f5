// File: cmd/campusdaily/main.go
package main

import "campusdaily/cmd"

func main() {
	cmd.Execute()
}
