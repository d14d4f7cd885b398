package filestore

// CalibrationDocument is the on-disk shape of the calibration offset.
type CalibrationDocument struct {
	OffsetDeg int `json:"offset_deg"`
}

// CalibrationStore is the file-backed calibration document.
type CalibrationStore struct {
	doc *Document[CalibrationDocument]
}

// OpenCalibrationStore loads (or creates, offset 0) the calibration file.
func OpenCalibrationStore(path string) (*CalibrationStore, error) {
	doc, err := Open[CalibrationDocument](path)
	if err != nil {
		return nil, err
	}
	return &CalibrationStore{doc: doc}, nil
}

// Get returns the persisted offset.
func (s *CalibrationStore) Get() int { return s.doc.Get().OffsetDeg }

// Set persists a new offset.
func (s *CalibrationStore) Set(offsetDeg int) error {
	return s.doc.Mutate(func(CalibrationDocument) (CalibrationDocument, error) {
		return CalibrationDocument{OffsetDeg: offsetDeg}, nil
	})
}
