// Package rules evaluates named steps of guarded actions.
//
// A step is an ordered list of rules. Each rule has a condition and an
// action; for every rule whose condition is truthy the action is evaluated
// for its side effects. Rules are data: they are loaded once from
// configuration and interpreted by an Evaluator, so caching policy can change
// per deployment without recompiling.
//
// # Bindings
//
// Every evaluation sees these names:
//
//	request        *mvc.Request
//	response       *mvc.Response
//	session        *mvc.Session, or nil
//	responseCache  *CacheHandle bound to the current request context
//
// plus any extra bindings passed to EvaluateStep (the dispatch interceptor
// adds dispatchError to afterDispatch).
//
// # Example
//
//	steps:
//	  beforeDispatch:
//	    - name: serveFromCache
//	      position: 10
//	      condition: 'request.Method in ["GET", "HEAD"] && responseCache.AllowsCaching(request)'
//	      action: 'responseCache.Get(request, response)'
//
// # Positions
//
//	10, -5          numeric, ascending; ties keep declaration order
//	(empty)         after all numeric positions, declaration order
//	start [weight]  before everything numeric; higher weight first
//	end [weight]    after everything; higher weight last
//	before <name>   directly before the named rule
//	after <name>    directly after the named rule
package rules
