// Package valyu is a client for the Valyu search, contents, answer and deep
// research API.
//
// Every request type is built from its mandatory value with New*Request and
// refined with With* methods. Each With* call returns a modified copy, so a
// base request can be shared and specialised freely. Requests are validated
// before anything is sent; a constraint violation is reported as an
// InvalidRequest error and no network call is made.
//
// All failures are *Error values with one ErrorKind. Compare with errors.Is
// against the Err* sentinels:
//
//	resp, err := client.Search(ctx, "quantum error correction")
//	if errors.Is(err, valyu.ErrRateLimitExceeded) {
//		// back off and retry
//	}
//
// The client never retries on its own. IsRetryable tells a caller-side retry
// policy which kinds are worth another attempt.
//
// Research tasks run asynchronously on the service. Create starts one, Status
// fetches a snapshot and Wait polls until the task is completed, failed or
// cancelled:
//
//	task, err := client.Research.Create(ctx, valyu.NewResearchRequest(q).WithMode(valyu.ModeLite))
//	if err != nil {
//		return err
//	}
//	final, err := client.Research.Wait(ctx, task.ID, valyu.DefaultWaitOptions(task.Mode))
//	if valyu.IsTimeout(err) {
//		// still running remotely; poll again later
//	}
//
// A Wait timeout is local: the task keeps running and can be resumed with
// another Wait or stopped with Cancel.
package valyu
