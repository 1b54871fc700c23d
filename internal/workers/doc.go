/*
Package workers sizes the worker pools used by batch tools such as the
thumbnail backfill.

Counts are derived from runtime.GOMAXPROCS(0), which Go sets from the
container CPU limit, rather than runtime.NumCPU, which reports host CPUs:

	n := workers.ForCPU(8)   // one per CPU, at most 8
	n := workers.ForMixed(8) // 1.5 per CPU, at most 8

Operators can pin the count for every workload:

	MEDIA_LITE_WORKERS=4 thumbgen

A non-numeric or non-positive value is logged and ignored.
*/
package workers
