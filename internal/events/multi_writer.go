package events

// MultiWriter fans events out to multiple writers.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// WriteStep sends a step event to all writers.
func (mw *MultiWriter) WriteStep(e StepEvent) error {
	for _, w := range mw.writers {
		if err := w.WriteStep(e); err != nil {
			return err
		}
	}
	return nil
}

// WriteAbort sends an abort event to all writers.
func (mw *MultiWriter) WriteAbort(e AbortEvent) error {
	for _, w := range mw.writers {
		if err := w.WriteAbort(e); err != nil {
			return err
		}
	}
	return nil
}

// WriteFault sends a fault event to all writers.
func (mw *MultiWriter) WriteFault(e FaultEvent) error {
	for _, w := range mw.writers {
		if err := w.WriteFault(e); err != nil {
			return err
		}
	}
	return nil
}

// WriteDispatch sends a dispatch event to all writers.
func (mw *MultiWriter) WriteDispatch(e DispatchEvent) error {
	for _, w := range mw.writers {
		if err := w.WriteDispatch(e); err != nil {
			return err
		}
	}
	return nil
}
