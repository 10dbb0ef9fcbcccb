package canonicalize

// KeyID derives a TUF keyid from the canonical JSON encoding of a public key
// object (keytype/scheme/keyval). Callers pass in the same
// map[string]interface{} shape that will be embedded in root.json's "keys"
// table so the digest matches what any standard TUF client would compute.
func KeyID(publicKeyObject interface{}) (string, error) {
	return CanonicalHash(publicKeyObject)
}
