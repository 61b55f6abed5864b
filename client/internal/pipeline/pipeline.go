// Package pipeline implements the named, removable stage registry the
// transport adapter contract requires (spec §4.G): inbound bytes pass
// through zero or more named Stages, in installation order, before
// reaching whatever terminal consumer owns the Pipeline.
package pipeline

// Stage transforms a slice of inbound bytes before it reaches the next
// stage, or the terminal consumer if it is the last one. A decompression
// stage and the streaming response handler are both Stages.
type Stage interface {
	Process(data []byte) ([]byte, error)
}

// Pipeline is an ordered, named list of Stages. Names are unique; a second
// Insert under an existing name replaces it.
type Pipeline struct {
	names  []string
	stages []Stage
}

func New() *Pipeline {
	return new(Pipeline)
}

// Insert appends stage under name, or replaces the existing stage of that
// name if one is already installed, in place.
func (p *Pipeline) Insert(name string, stage Stage) {
	for i, n := range p.names {
		if n == name {
			p.stages[i] = stage
			return
		}
	}

	p.names = append(p.names, name)
	p.stages = append(p.stages, stage)
}

// Remove drops the stage installed under name, if any. It is safe to call
// from within that stage's own Process call, since removal only affects
// the slice consulted by the next Process invocation, never the one in
// flight.
func (p *Pipeline) Remove(name string) bool {
	for i, n := range p.names {
		if n == name {
			p.names = append(append([]string(nil), p.names[:i]...), p.names[i+1:]...)
			p.stages = append(append([]Stage(nil), p.stages[:i]...), p.stages[i+1:]...)
			return true
		}
	}

	return false
}

// Has reports whether a stage is installed under name.
func (p *Pipeline) Has(name string) bool {
	for _, n := range p.names {
		if n == name {
			return true
		}
	}

	return false
}

// Process runs data through every installed stage, in order.
func (p *Pipeline) Process(data []byte) ([]byte, error) {
	var err error

	for _, stage := range p.stages {
		data, err = stage.Process(data)
		if err != nil {
			return nil, err
		}
	}

	return data, nil
}
