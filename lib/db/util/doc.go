// Package util provides statistics helpers shared by the db engines and the
// command line tools.
//
//   - Stats and DistributionStats summarize a series of samples and rate how
//     evenly a quantity is spread (e.g. container sizes, operations per worker)
//   - SizeHistogram tracks byte sizes in exponential buckets and estimates
//     percentiles without keeping the samples
package util
