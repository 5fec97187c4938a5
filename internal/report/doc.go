// Package report renders a stored dataset summary as a downloadable document.
//
// PDF is the default format. The same summary always renders to the same
// bytes: document dates come from the summary's CreatedAt and map keys are
// written in sorted order.
package report
