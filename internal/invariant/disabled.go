//go:build xllrelease

package invariant

const enabled = false
