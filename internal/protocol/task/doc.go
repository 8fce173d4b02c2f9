// Package task defines the capability interface a task implements to take
// over a signaling channel, and the negotiation that selects one.
package task
