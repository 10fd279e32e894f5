// -- cmd/version.go --
package cmd

// Version is stamped at build time:
//
//	go build -ldflags "-X campusdaily/cmd.Version=v1.2.3"
var Version = "dev"
