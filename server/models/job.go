package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var ErrDuplicateJob = errors.New("job with the given name already exists in queue")

type Job struct {
	BaseModel
	Fails       int        `json:"fails"`
	Name        string     `json:"name"`
	Handler     string     `json:"handler"`
	Args        string     `json:"args"`
	LastError   string     `json:"last_error"`
	Claimed     bool       `json:"claimed" gorm:"default:false"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	JobStatusID uint       `json:"job_status_id"`
	JobStatus   *JobStatus `json:"status"`
}

func (job *Job) MarkAsClaimed() (bool, error) {
	inProgressStatus := JobStatus{}
	err := db.Where(&JobStatus{Name: IN_PROGRESS_JOB}).Find(&inProgressStatus).Error
	if err != nil {
		return false, err
	}

	res := db.Model(&Job{}).Where("id = ? AND claimed = ?", job.ID, false).Updates(map[string]interface{}{
		"claimed":       true,
		"job_status_id": inProgressStatus.ID,
	})

	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

func (job *Job) Update(data map[string]interface{}) error {
	return db.Model(job).Updates(data).Error
}

// CreateJob enqueues a job to be run at 'enqueuedAt'(with the
// 'scheduled' status for future times, 'enqueued' otherwise). When
// 'unique' is set, a job by the same name already waiting or running
// returns ErrDuplicateJob instead.
func CreateJob(name, handler, args string, unique bool, enqueuedAt time.Time) error {
	statusName := ENQUEUED_JOB
	if enqueuedAt.After(time.Now()) {
		statusName = SCHEDULED_JOB
	}

	jobStatus, err := FindJobStatus(statusName)
	if err != nil {
		return err
	}

	if unique {
		pendingStatuses := []JobStatus{}
		err := db.Where("name IN ?", []string{ENQUEUED_JOB, IN_PROGRESS_JOB, SCHEDULED_JOB}).
			Find(&pendingStatuses).Error
		if err != nil {
			return err
		}

		statusIDs := []uint{}
		for _, status := range pendingStatuses {
			statusIDs = append(statusIDs, status.ID)
		}

		res := db.Where("name = ? AND job_status_id IN ?", name, statusIDs).First(&Job{})
		if res.Error != nil && !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return res.Error
		}

		if res.RowsAffected > 0 {
			return ErrDuplicateJob
		}
	}

	return db.Create(&Job{
		Name:        name,
		Handler:     handler,
		Args:        args,
		EnqueuedAt:  enqueuedAt,
		JobStatusID: jobStatus.ID,
	}).Error
}

func LastJob(status string, claimed bool) (*Job, error) {
	job := Job{}
	err := db.Joins("INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ? AND claimed = ? ",
		status, claimed).Last(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// FirstScheduledJobToBeQueued returns the oldest 'scheduled' job
// whose enqueue time has passed
func FirstScheduledJobToBeQueued() (*Job, error) {
	jobStatus, err := FindJobStatus(SCHEDULED_JOB)
	if err != nil {
		return nil, err
	}

	job := Job{}
	err = db.Preload("JobStatus").
		Where("job_status_id = ? AND enqueued_at <= ?", jobStatus.ID, time.Now()).
		First(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func CurrentJobsStats() (*JobsStats, error) {
	const JOIN_QUERY = "INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ?"
	stats := JobsStats{}

	err := db.Joins(JOIN_QUERY, ENQUEUED_JOB).Model(&Job{}).Count(&stats.EnqueuedJobCount).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = db.Joins(JOIN_QUERY, IN_PROGRESS_JOB).Model(&Job{}).Count(&stats.InProgressJobCount).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = db.Joins(JOIN_QUERY, SUCCESSFUL_JOB).Model(&Job{}).Count(&stats.SuccessfulJobCount).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = db.Joins(JOIN_QUERY, DEAD_JOB).Model(&Job{}).Count(&stats.DeadJobCount).Error
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// LastJobLastUpdated returns the last job which was last updated 'arg1' minutes ago
// and is of 'arg2' status.
// i.e last record where job.updated_at + 'arg1' minutes <= 'now'.
//
// WARNING: THIS QUERY IS UNIQUE TO SQLITE, REMEMBER TO UPDATE IT IF/WHEN
// OTHER SQL DATABASES ARE SUPPORTED
func LastJobLastUpdated(minutesAgo uint, status string) (*Job, error) {
	jobStatus := JobStatus{}
	err := db.Where(&JobStatus{Name: status}).Find(&jobStatus).Error
	if err != nil {
		return nil, err
	}

	job := Job{}
	err = db.Where(
		fmt.Sprintf("job_status_id = ? AND datetime(updated_at, '+%v minute') <= datetime('now')", minutesAgo),
		jobStatus.ID,
	).Last(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}
