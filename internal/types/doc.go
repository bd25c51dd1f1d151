// Package types defines the core data types shared across the latency
// monitoring pipeline: latency events, the closed component/source
// classification enums, and the aggregate views served by the query API.
package types
