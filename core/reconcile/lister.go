package reconcile

import (
	"context"
	"path"
	"strings"
)

// DefaultSidecarName is the reserved file holding a directory's uid.
const DefaultSidecarName = ".catalog-sync.json"

// Lister walks a Remote depth-first and applies the key normalization rules
// shared by every backend.
type Lister struct {
	remote      Remote
	sidecarName string
}

// NewLister creates a lister. An empty sidecarName selects DefaultSidecarName.
func NewLister(remote Remote, sidecarName string) *Lister {
	if sidecarName == "" {
		sidecarName = DefaultSidecarName
	}
	return &Lister{remote: remote, sidecarName: sidecarName}
}

// Stream starts a lazy walk below root. Nothing is listed until the first call to Next.
func (l *Lister) Stream(ctx context.Context, root string) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	return &Stream{
		lister: l,
		ctx:    ctx,
		cancel: cancel,
		root:   strings.TrimSuffix(root, "/"),
	}
}

// normalize applies the listing policy to one raw item listed under dir.
// It reports false when the item must not be emitted.
func (l *Lister) normalize(dir string, item RemoteEntry) (RemoteEntry, bool) {
	self := dir + "/"

	switch item.Kind {
	case KindDirectory:
		if !strings.HasSuffix(item.Key, "/") {
			item.Key += "/"
		}
		// Some backends report the listed prefix as one of its own children.
		if item.Key == self {
			return item, false
		}
		item.ContentHash = ""
		item.Size = 0
	case KindFile:
		// Zero-byte "folder" placeholder objects.
		if item.Key == self {
			return item, false
		}
		if path.Base(item.Key) == l.sidecarName {
			return item, false
		}
		item.ContentHash = strings.Trim(item.ContentHash, `"`)
	default:
		return item, false
	}

	return item, true
}

type frame struct {
	dir     string
	entries <-chan RemoteEntry
}

// Stream is a finite, single-pass sequence of remote entries.
// It must be read to exhaustion (or closed) and cannot be restarted.
type Stream struct {
	lister  *Lister
	ctx     context.Context
	cancel  context.CancelFunc
	root    string
	frames  []frame
	started bool
	done    bool
	err     error
}

// Next advances to the next entry. It returns false once the walk is exhausted
// or has failed; Err distinguishes the two.
func (s *Stream) Next() (RemoteEntry, bool) {
	if s.done {
		return RemoteEntry{}, false
	}
	if !s.started {
		s.started = true
		s.push(s.root)
	}

	for len(s.frames) > 0 {
		top := s.frames[len(s.frames)-1]
		if err := s.ctx.Err(); err != nil {
			s.fail(&ListingError{Path: top.dir, Err: err})
			return RemoteEntry{}, false
		}

		var (
			item RemoteEntry
			ok   bool
		)
		select {
		case <-s.ctx.Done():
			s.fail(&ListingError{Path: top.dir, Err: s.ctx.Err()})
			return RemoteEntry{}, false
		case item, ok = <-top.entries:
		}

		if !ok {
			s.frames = s.frames[:len(s.frames)-1]
			continue
		}
		if item.Err != nil {
			s.fail(&ListingError{Path: top.dir, Err: item.Err})
			return RemoteEntry{}, false
		}

		entry, keep := s.lister.normalize(top.dir, item)
		if !keep {
			continue
		}
		if entry.Kind == KindDirectory {
			s.push(strings.TrimSuffix(entry.Key, "/"))
		}
		return entry, true
	}

	s.finish()
	return RemoteEntry{}, false
}

// Err returns the ListingError that stopped the walk, if any.
func (s *Stream) Err() error {
	return s.err
}

// Close abandons the walk and releases the backend listings.
func (s *Stream) Close() {
	s.finish()
}

// Collect drains the stream into a slice. It returns ErrStreamConsumed when
// the stream was already read.
func (s *Stream) Collect() ([]RemoteEntry, error) {
	if s.started || s.done {
		return nil, ErrStreamConsumed
	}

	var entries []RemoteEntry
	for {
		entry, ok := s.Next()
		if !ok {
			break
		}
		entries = append(entries, entry)
	}
	if s.err != nil {
		return nil, s.err
	}
	return entries, nil
}

func (s *Stream) push(dir string) {
	s.frames = append(s.frames, frame{dir: dir, entries: s.lister.remote.List(s.ctx, dir)})
}

func (s *Stream) fail(err error) {
	s.err = err
	s.finish()
}

func (s *Stream) finish() {
	s.done = true
	s.frames = nil
	s.cancel()
}
