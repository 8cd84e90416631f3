package llvmir

// FileStats totals the scans of several files.
type FileStats struct {
	Stats

	Files      int
	InputBytes int
}

// CountFiles reads each path with [ReadFile] and records its functions into
// agg. It stops at the first unreadable file; agg is then partially filled
// and should be discarded.
func CountFiles(agg *Aggregate, paths []string, opts ReadOptions) (FileStats, error) {
	var total FileStats

	for _, path := range paths {
		ir, err := ReadFile(path, opts)
		if err != nil {
			return total, err
		}

		stats := Count(agg, ir)

		total.Files++
		total.InputBytes += len(ir)
		total.InputLines += stats.InputLines
		total.Functions += stats.Functions
		total.Anonymous += stats.Anonymous
	}

	return total, nil
}
