/*
Package scheduler provides Runner, a named fixed-interval background
loop. cmd/brokerd starts one Runner for the checkpoint cycle and one for
the finished-task purge cycle, each wrapping a lifecycle.Controller
method call.
*/
package scheduler
