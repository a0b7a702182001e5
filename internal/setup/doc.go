// Package setup checks that a build host is ready to run pull-request jobs.
//
// This package is essentially a collection of host checks, and is therefore the only package that is
// allowed to call a global logger.
package setup
