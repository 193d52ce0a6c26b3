// Package schedule decides when a notification is allowed to go out.
//
// The policy converts a desired send instant into an allowed one: sends
// that land inside the customer's local quiet-hours window are pushed to
// the end of the window, re-anchored in the target timezone so daylight
// saving transitions between the input and output dates are handled
// correctly. Time-sensitive notifications close to their real-world
// deadline (a reminder for an appointment a few hours away) bypass or
// skip the deferral depending on configuration, since delaying them past
// quiet hours would make them useless.
package schedule
