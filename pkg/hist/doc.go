// Package hist provides one-dimensional histograms and profiles with
// ROOT-compatible binning conventions.
//
// Bin 0 is the underflow bin, bins 1..N are in range and bin N+1 is the
// overflow bin. Every in-range bin is the half-open interval [low, high).
package hist
