package runner

func (p *osProcess) Stdout(capacity int) <-chan []byte {
	return p.stdout.Subscribe(capacity)
}

func (p *osProcess) Stderr(capacity int) <-chan []byte {
	return p.stderr.Subscribe(capacity)
}
