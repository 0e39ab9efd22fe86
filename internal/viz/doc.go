// Package viz renders a running cluster in the terminal.
//
// [Model] is a bubbletea program that advances a Hermite stepper on every
// tick and draws an orthographic projection of the particles on a braille
// [Canvas], next to an energy chart.
//
// Keys: space pauses, r resets, +/- zoom, x/y rotate, q quits.
package viz
