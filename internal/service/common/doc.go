// Package common holds the helpers shared by the command line binaries: the
// DoorService client and the detection of the calling user.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
