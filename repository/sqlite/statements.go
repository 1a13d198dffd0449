package sqlite

const (
	insertJobQuery = `
        INSERT INTO jobs (
            id, kind, source_url, original_filename, stored_filename,
            title, status, model, language, error, fallback_reason,
            attempts, not_before, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	jobColumns = `
        id, kind, source_url, original_filename, stored_filename,
        title, status, model, language, error, fallback_reason,
        attempts, not_before, created_at, updated_at
    `

	getJobQuery = `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	nextClaimableQuery = `
        SELECT ` + jobColumns + `
        FROM jobs
        WHERE status = ? AND not_before <= ?
        ORDER BY created_at ASC
        LIMIT 1
    `

	transitionQuery = `
        UPDATE jobs SET status = ?, error = ?, updated_at = ?
        WHERE id = ? AND status = ?
    `

	requeueQuery = `
        UPDATE jobs SET
            status = ?, attempts = attempts + 1, not_before = ?, updated_at = ?
        WHERE id = ? AND status = ?
    `

	markFallbackQuery = `
        UPDATE jobs SET status = ?, fallback_reason = ?, updated_at = ?
        WHERE id = ? AND status = ?
    `

	setTitleQuery = `
        UPDATE jobs SET title = ? WHERE id = ?
    `

	staleJobsQuery = `
        SELECT ` + jobColumns + `
        FROM jobs
        WHERE status = ? AND updated_at < ?
    `

	deleteJobQuery = `DELETE FROM jobs WHERE id = ?`

	insertTranscriptQuery = `
        INSERT INTO transcripts (
            job_id, segments, full_text, edited_text,
            language, duration, created_at, last_edited_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `

	getTranscriptQuery = `
        SELECT job_id, segments, full_text, edited_text,
               language, duration, created_at, last_edited_at
        FROM transcripts WHERE job_id = ?
    `

	saveEditQuery = `
        UPDATE transcripts SET
            segments = ?, full_text = ?, edited_text = ?, last_edited_at = ?
        WHERE job_id = ?
    `

	deleteTranscriptQuery = `DELETE FROM transcripts WHERE job_id = ?`
)
