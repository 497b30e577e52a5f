package store

// Store keeps string values by key.
type Store interface {
	Get(key string) (string, bool)
	Put(key, value string)
	Len() int
}
