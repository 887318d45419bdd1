package output_storage

// Write implements io.Writer so an OutputStorage can be used as exec.Cmd.Stdout/Stderr.
// It stores a copy of p since the caller may reuse the buffer after Write returns.
//
// A nil receiver discards the data and reports success.
func (s *OutputStorage) Write(p []byte) (int, error) {
	if s == nil {
		return len(p), nil
	}
	if len(p) == 0 {
		return 0, nil
	}

	s.Append(append([]byte(nil), p...))

	return len(p), nil
}
