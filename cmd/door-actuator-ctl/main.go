package main

import "github.com/oshokin/door-actuator/cmd/door-actuator-ctl/cmd"

func main() {
	cmd.Execute()
}
