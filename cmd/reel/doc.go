// Command reel runs and controls the transcoding daemon.
//
// `reel daemon run` hosts the scheduler in the foreground. The remaining
// commands talk to a running daemon over its Unix socket: task submission and
// ordering, worker pause/resume/terminate, status and log tailing.
package main
