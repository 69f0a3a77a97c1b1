package main

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
)

// All migration files ride inside the binary, so a deployed migrator has
// no dependency on the working directory it happens to start in.
//
//go:embed *.sql
var embeddedSQL embed.FS

// filenamePattern pins the accepted naming scheme: a three-digit
// sequence, a snake_case name, and an explicit direction.
var filenamePattern = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// migrationFile is one parsed migration filename.
type migrationFile struct {
	Sequence  int
	Name      string
	Direction string
	Filename  string
}

// migrationSet wraps a filesystem of migration files and audits it
// before anything is allowed to touch the database.
type migrationSet struct {
	fsys fs.FS

	// Checksums taken on the previous audit. A second audit of the same
	// set fails if any file content drifted in between.
	checksums map[string]string
}

// newMigrationSet builds a set over the given filesystem; nil selects
// the migrations embedded in this binary.
func newMigrationSet(fsys fs.FS) *migrationSet {
	if fsys == nil {
		fsys = embeddedSQL
	}

	return &migrationSet{
		fsys:      fsys,
		checksums: make(map[string]string),
	}
}

// FS exposes the raw filesystem for the migrate source driver.
func (s *migrationSet) FS() fs.FS {
	return s.fsys
}

// Files returns every SQL filename in the set, sorted. With the pinned
// naming scheme, lexicographic order is also apply order.
func (s *migrationSet) Files() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var files []string

	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}

		files = append(files, entry.Name())
	}

	sort.Strings(files)

	return files, nil
}

// Content returns the SQL text of one migration file.
func (s *migrationSet) Content(filename string) ([]byte, error) {
	return fs.ReadFile(s.fsys, filename)
}

// MaxSequence reports the highest migration sequence in the set, which
// is the schema version this binary can bring a database up to.
func (s *migrationSet) MaxSequence() (int, error) {
	files, err := s.Files()
	if err != nil {
		return 0, err
	}

	highest := 0

	for _, f := range files {
		parsed, err := parseMigrationFilename(f)
		if err != nil {
			continue
		}

		if parsed.Sequence > highest {
			highest = parsed.Sequence
		}
	}

	return highest, nil
}

// Audit checks everything that can be checked without a database:
// every file matches the naming scheme, every up has its down, the
// sequence is gapless from 001 with no duplicate numbers, and file
// contents have not drifted since the previous audit.
func (s *migrationSet) Audit() error {
	files, err := s.Files()
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no migration files found")
	}

	parsed := make([]*migrationFile, 0, len(files))

	for _, f := range files {
		m, err := parseMigrationFilename(f)
		if err != nil {
			return err
		}

		parsed = append(parsed, m)
	}

	if err := checkPairing(parsed); err != nil {
		return err
	}

	if err := checkSequence(parsed); err != nil {
		return err
	}

	return s.checkContent(files)
}

// parseMigrationFilename splits a filename into its sequence, name and
// direction, rejecting anything off-scheme.
func parseMigrationFilename(filename string) (*migrationFile, error) {
	matches := filenamePattern.FindStringSubmatch(filename)
	if matches == nil {
		return nil, fmt.Errorf(
			"invalid migration filename %q (want NNN_name.up.sql / NNN_name.down.sql)", filename)
	}

	sequence, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid sequence in %q: %w", filename, err)
	}

	return &migrationFile{
		Sequence:  sequence,
		Name:      matches[2],
		Direction: matches[3],
		Filename:  filename,
	}, nil
}

// checkPairing requires an up and a down file for every migration, and
// exactly one name per sequence number.
func checkPairing(migrations []*migrationFile) error {
	type pair struct {
		name string
		dirs map[string]bool
	}

	bySequence := make(map[int]*pair)

	for _, m := range migrations {
		p, ok := bySequence[m.Sequence]
		if !ok {
			p = &pair{name: m.Name, dirs: make(map[string]bool)}
			bySequence[m.Sequence] = p
		}

		if p.name != m.Name {
			return fmt.Errorf("sequence %03d is used by both %q and %q", m.Sequence, p.name, m.Name)
		}

		p.dirs[m.Direction] = true
	}

	for seq, p := range bySequence {
		if !p.dirs["up"] {
			return fmt.Errorf("migration %03d_%s has no up file", seq, p.name)
		}

		if !p.dirs["down"] {
			return fmt.Errorf("migration %03d_%s has no down file", seq, p.name)
		}
	}

	return nil
}

// checkSequence requires numbering to start at 001 and run without gaps.
func checkSequence(migrations []*migrationFile) error {
	seen := make(map[int]bool)

	for _, m := range migrations {
		seen[m.Sequence] = true
	}

	sequences := make([]int, 0, len(seen))
	for seq := range seen {
		sequences = append(sequences, seq)
	}

	sort.Ints(sequences)

	if sequences[0] != 1 {
		return fmt.Errorf("migration sequence starts at %03d, want 001", sequences[0])
	}

	for i := 1; i < len(sequences); i++ {
		if sequences[i] != sequences[i-1]+1 {
			return fmt.Errorf("gap in migration sequence: %03d follows %03d",
				sequences[i], sequences[i-1])
		}
	}

	return nil
}

// checkContent verifies files against checksums from the previous audit
// and records fresh ones for the next.
func (s *migrationSet) checkContent(files []string) error {
	for _, f := range files {
		content, err := s.Content(f)
		if err != nil {
			return fmt.Errorf("failed to read migration %q: %w", f, err)
		}

		sum := sha256.Sum256(content)
		checksum := hex.EncodeToString(sum[:])

		if previous, ok := s.checksums[f]; ok && previous != checksum {
			return fmt.Errorf("migration %q changed since it was last validated", f)
		}

		s.checksums[f] = checksum
	}

	return nil
}
