// Package httpapi implements the plain HTTP command surface.
//
// The door endpoints use the same paths as the panel firmware
// (/openFirstDoor, /openSecondDoor, /openBothDoors), so existing bookmarks
// and home-automation scripts keep working.
package httpapi
