package main

import "github.com/oshokin/door-actuator/cmd/door-actuator-server/cmd"

func main() {
	cmd.Execute()
}
