package model

import "sync"

// Statistics is the process-wide counter bundle incremented by the
// scanner, planner and executor. It is the one piece of shared mutable
// state in the pipeline.
type Statistics struct {
	mu sync.Mutex

	// Scan phase.
	FilesInSource    int64
	BytesInSource    int64
	FilesInCompare   int64
	BytesInCompare   int64
	ScanningErrors   int64

	// Plan phase.
	FilesToCopy     int64
	BytesToCopy     int64
	FilesToHardlink int64
	BytesToHardlink int64
	FilesToDelete   int64
	BytesToDelete   int64

	// Execute phase.
	FilesCopied     int64
	BytesCopied     int64
	FilesHardlinked int64
	BytesHardlinked int64
	FilesDeleted    int64
	BytesDeleted    int64
	BackupErrors    int64
}

func (s *Statistics) AddSourceEntry(isDir bool, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesInSource++
	if !isDir {
		s.BytesInSource += size
	}
}

func (s *Statistics) AddCompareEntry(isDir bool, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesInCompare++
	if !isDir {
		s.BytesInCompare += size
	}
}

func (s *Statistics) AddScanningError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ScanningErrors++
}

// AddPlanned records a planned action's counters at emission time.
func (s *Statistics) AddPlanned(a Action, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch a.Type {
	case ActionCopy:
		if !a.IsDir {
			s.FilesToCopy++
			s.BytesToCopy += size
		}
	case ActionHardlink:
		s.FilesToHardlink++
		s.BytesToHardlink += size
	case ActionDelete:
		if !a.IsDir {
			s.FilesToDelete++
			s.BytesToDelete += size
		}
	}
}

func (s *Statistics) AddCopied(size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesCopied++
	s.BytesCopied += size
}

func (s *Statistics) AddHardlinked(size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesHardlinked++
	s.BytesHardlinked += size
}

func (s *Statistics) AddDeleted(size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesDeleted++
	s.BytesDeleted += size
}

func (s *Statistics) AddBackupError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BackupErrors++
}

// Snapshot returns a copy of the counters for reporting; safe for
// concurrent use while the pipeline keeps running.
func (s *Statistics) Snapshot() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Statistics{
		FilesInSource:    s.FilesInSource,
		BytesInSource:    s.BytesInSource,
		FilesInCompare:   s.FilesInCompare,
		BytesInCompare:   s.BytesInCompare,
		ScanningErrors:   s.ScanningErrors,
		FilesToCopy:      s.FilesToCopy,
		BytesToCopy:      s.BytesToCopy,
		FilesToHardlink:  s.FilesToHardlink,
		BytesToHardlink:  s.BytesToHardlink,
		FilesToDelete:    s.FilesToDelete,
		BytesToDelete:    s.BytesToDelete,
		FilesCopied:      s.FilesCopied,
		BytesCopied:      s.BytesCopied,
		FilesHardlinked:  s.FilesHardlinked,
		BytesHardlinked:  s.BytesHardlinked,
		FilesDeleted:     s.FilesDeleted,
		BytesDeleted:     s.BytesDeleted,
		BackupErrors:     s.BackupErrors,
	}
}
