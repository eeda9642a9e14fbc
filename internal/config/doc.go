// Package config defines the settings of the door actuator binaries and
// provides helpers to load, validate and save them in YAML format.
//
// A single file carries the daemon settings (listeners, hardware, actuators,
// timing, trigger, MQTT) and the client section used by door-actuator-ctl.
package config
