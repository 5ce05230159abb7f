// Package present implements the display boundary of the dispatch queue.
//
// Exactly one presenter gates acknowledgement (the terminal, or a bare
// close timer when the terminal is off). Mirrors such as Telegram receive a
// copy best effort and never hold up the queue.
package present
