/*
Package queue holds pending jobs until a dispatcher hands them to the engine.

OrderedJobQueue:
  One group's pending jobs, ordered by priority (higher first) and then by
  submission sequence. Add never blocks; Take blocks until a job arrives or
  its context is done.

GroupPriorityQueue:
  Routes jobs to the OrderedJobQueue of their group, creating groups on first
  use with an atomic insert-if-absent. The "default" group is created up front
  and never removed. Fairness between groups is left to the dispatcher, which
  walks Snapshot() each pass and takes at most one job per group.
*/
package queue
