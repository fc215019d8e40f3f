package tests

type MockFlagStore struct {
	Keys           []string
	ExecutionCount int
	ReturnedError  error
}

func (mfs *MockFlagStore) Flag(key string) error {
	mfs.ExecutionCount++
	mfs.Keys = append(mfs.Keys, key)

	return mfs.ReturnedError
}
