// Package workspace lays out per-build directories under the build root and
// prunes them to their retained files once a build finishes.
//
// Layout: <root>/<flavor>/<version>/. After reconciliation a workspace holds
// only regular files whose names carry a dotted version number, files ending
// in ".log", and any names the caller asks to keep.
package workspace
