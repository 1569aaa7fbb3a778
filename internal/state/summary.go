package state

import "github.com/rwese/obsidian-postprocessor/internal/frontmatter"

// StatusCounts tallies records by status.
type StatusCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Total returns the number of records counted.
func (c StatusCounts) Total() int {
	return c.Pending + c.InProgress + c.Completed + c.Failed
}

// Add accumulates other into c.
func (c *StatusCounts) Add(other StatusCounts) {
	c.Pending += other.Pending
	c.InProgress += other.InProgress
	c.Completed += other.Completed
	c.Failed += other.Failed
}

// Summarize counts the attachment records of doc per processor.
func Summarize(doc *frontmatter.Document) (map[string]StatusCounts, error) {
	records, err := Records(doc)
	if err != nil {
		return nil, err
	}
	out := make(map[string]StatusCounts, len(records))
	for processor, recs := range records {
		var counts StatusCounts
		for _, rec := range recs {
			switch rec.Status {
			case StatusCompleted:
				counts.Completed++
			case StatusFailed:
				counts.Failed++
			case StatusInProgress:
				counts.InProgress++
			default:
				counts.Pending++
			}
		}
		out[processor] = counts
	}
	return out, nil
}
