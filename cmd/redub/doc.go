// Command redub is the operator CLI for the dubbing queue. It talks to the
// same SQLite database and object store as the redubd daemon, so it works
// whether or not the daemon is running: enqueue videos, inspect and retry
// queue entries, run the pipeline synchronously for one video, and manage
// configuration.
package main
