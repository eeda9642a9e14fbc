// Package actuation contains the core domain types of the door actuator.
//
// It defines Actuator (one servo channel and its two resting angles), Step and
// Sequence (the immutable press choreography), Phase and Status (the progress
// of the single active run) and Actor (who asked for a run).
package actuation
