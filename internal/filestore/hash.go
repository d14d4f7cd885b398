package filestore

import "golang.org/x/crypto/bcrypt"

// HashKeyMaterial produces a bcrypt digest of secret key material so the
// credentials document can carry an integrity check without persisting the
// key itself in the JSON file. There is no end-user authentication in this
// system (see Non-goals) — this is the one place bcrypt is still useful:
// detecting that the on-disk PEM hash no longer matches the key an operator
// loaded at startup.
func HashKeyMaterial(material string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(material), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// KeyMaterialMatches reports whether material hashes to the given digest.
func KeyMaterialMatches(material, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(material)) == nil
}
