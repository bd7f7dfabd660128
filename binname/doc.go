// Package binname persists Go values in workbook binary names.
//
// Values are encoded as canonical CBOR, copied into a buffer the add-in
// owns and handed to xlDefineBinaryName. Get asks the host for its copy
// through xlGetBinaryName and decodes it.
package binname
