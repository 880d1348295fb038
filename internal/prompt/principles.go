package prompt

import (
	"log"
	"os"
	"path/filepath"
	"strings"
)

// FilePrinciplesLookup returns a PrinciplesLookup backed by a directory of principles
// documents. A key resolves to the first of <dir>/<key>.md or
// <dir>/<key>.txt that exists and is readable. Missing files are a normal
// condition; unreadable ones are logged and treated as absent.
func FilePrinciplesLookup(dir string) PrinciplesLookup {
	return func(key string) (string, bool) {
		if dir == "" || key == "" {
			return "", false
		}
		// Keys come from the personality catalog, not from requests,
		// but reject path separators anyway.
		if strings.ContainsAny(key, `/\`) {
			return "", false
		}

		for _, ext := range []string{".md", ".txt"} {
			path := filepath.Join(dir, key+ext)
			data, err := os.ReadFile(path)
			if err != nil {
				if !os.IsNotExist(err) {
					log.Printf("prompt: failed to read principles document %s: %v", path, err)
				}
				continue
			}
			return string(data), true
		}
		return "", false
	}
}
