/*
Package queue defines the tasks a forest conversion is split into, one
per tree, as well as an interface for a Queue to hand them to workers.

It also provides an in-memory implementation of the Queue interface.
*/
package queue
