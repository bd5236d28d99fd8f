package service

import (
	"context"
	"testing"
	"time"

	"quant-platform/config"
	"quant-platform/internal/dto"
	"quant-platform/internal/model"
	"quant-platform/internal/repository"
	"quant-platform/internal/scheduler"
	"quant-platform/pkg/logger"
	"quant-platform/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type adminFixture struct {
	*runnerFixture
	sched *scheduler.Scheduler
	svc   ScheduleJobService
}

func newAdminFixture(t *testing.T) *adminFixture {
	f := newRunnerFixture(t)
	log := logger.FromZap(zaptest.NewLogger(t))
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	sched := scheduler.New(loc, log, f.repo.ScheduleJobRepo, f.runner)
	sched.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		sched.Stop(ctx)
	})

	svc := NewScheduleJobService(
		config.Scheduler{DefaultLogLimit: 20, MaxLogLimit: 100},
		loc,
		log,
		f.repo.ScheduleJobRepo,
		f.repo.ScheduleLogRepo,
		f.repo.UnitOfWork,
		sched,
		f.runner,
	)
	return &adminFixture{runnerFixture: f, sched: sched, svc: svc}
}

func createReq(name string) dto.CreateScheduleJobRequest {
	return dto.CreateScheduleJobRequest{
		JobName:  name,
		Market:   "KOSPI",
		CronExpr: "0 18 * * 1-5",
	}
}

func TestScheduleJobService_CreateJob(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	resp, err := f.svc.CreateJob(ctx, createReq("kospi_daily"))
	require.NoError(t, err)
	assert.Equal(t, "data_collect", resp.JobType)
	assert.Equal(t, model.DefaultDaysBack, resp.DaysBack)
	assert.True(t, resp.Enabled)
	require.NotNil(t, resp.NextRun)
	assert.Nil(t, resp.MLConfig)
	assert.True(t, f.sched.Has("kospi_daily"))

	_, err = f.svc.CreateJob(ctx, createReq("kospi_daily"))
	assert.ErrorIs(t, err, ErrDuplicateJobName)

	bad := createReq("bad_cron")
	bad.CronExpr = "0 18 * *"
	_, err = f.svc.CreateJob(ctx, bad)
	assert.ErrorIs(t, err, scheduler.ErrInvalidCronExpr)

	bad = createReq("bad_kind")
	bad.JobType = "backtest"
	_, err = f.svc.CreateJob(ctx, bad)
	assert.ErrorIs(t, err, model.ErrInvalidJobKind)
}

func TestScheduleJobService_CreateMLJob(t *testing.T) {
	f := newAdminFixture(t)

	req := createReq("ml_weekly")
	req.JobType = "ml_train"
	req.CronExpr = "0 0 3 ? * SUN"
	req.Enabled = utils.ToPointer(false)
	req.MLConfig = &dto.MLTrainConfigRequest{
		Algorithms:   []string{"lightgbm"},
		OptunaTrials: utils.ToPointer(20),
	}

	resp, err := f.svc.CreateJob(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp.MLConfig)
	assert.Equal(t, model.DefaultMLMarkets(), resp.MLConfig.Markets)
	assert.Equal(t, []string{"lightgbm"}, resp.MLConfig.Algorithms)
	assert.Equal(t, 20, resp.MLConfig.OptunaTrials)
	assert.Nil(t, resp.NextRun)
	assert.False(t, f.sched.Has("ml_weekly"))
}

func TestScheduleJobService_UpdateJob(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateJob(ctx, createReq("kospi_daily"))
	require.NoError(t, err)
	_, err = f.svc.CreateJob(ctx, createReq("kosdaq_daily"))
	require.NoError(t, err)

	t.Run("not found", func(t *testing.T) {
		_, err := f.svc.UpdateJob(ctx, 999, dto.UpdateScheduleJobRequest{Market: utils.ToPointer("KOSDAQ")})
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("rename collision", func(t *testing.T) {
		_, err := f.svc.UpdateJob(ctx, created.ID, dto.UpdateScheduleJobRequest{JobName: utils.ToPointer("kosdaq_daily")})
		assert.ErrorIs(t, err, ErrDuplicateJobName)
		assert.True(t, f.sched.Has("kospi_daily"))
	})

	t.Run("rename replaces timer", func(t *testing.T) {
		resp, err := f.svc.UpdateJob(ctx, created.ID, dto.UpdateScheduleJobRequest{
			JobName:  utils.ToPointer("kospi_evening"),
			CronExpr: utils.ToPointer("30 20 * * 1-5"),
		})
		require.NoError(t, err)
		assert.Equal(t, "kospi_evening", resp.JobName)
		assert.Equal(t, "KOSPI", resp.Market)
		assert.False(t, f.sched.Has("kospi_daily"))
		assert.True(t, f.sched.Has("kospi_evening"))

		next, ok := f.sched.NextRun("kospi_evening")
		require.True(t, ok)
		assert.Equal(t, 20, next.Hour())
		assert.Equal(t, 30, next.Minute())
	})

	t.Run("switching kind away from ml_train drops config", func(t *testing.T) {
		resp, err := f.svc.UpdateJob(ctx, created.ID, dto.UpdateScheduleJobRequest{JobType: utils.ToPointer("ml_train")})
		require.NoError(t, err)
		require.NotNil(t, resp.MLConfig)

		resp, err = f.svc.UpdateJob(ctx, created.ID, dto.UpdateScheduleJobRequest{JobType: utils.ToPointer("fundamental_collect")})
		require.NoError(t, err)
		assert.Nil(t, resp.MLConfig)

		var count int64
		require.NoError(t, f.db.Model(&model.MLTrainConfig{}).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("invalid cron leaves job untouched", func(t *testing.T) {
		_, err := f.svc.UpdateJob(ctx, created.ID, dto.UpdateScheduleJobRequest{CronExpr: utils.ToPointer("every day")})
		assert.ErrorIs(t, err, scheduler.ErrInvalidCronExpr)

		job, err := f.repo.ScheduleJobRepo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "30 20 * * 1-5", job.CronExpr)
	})
}

func TestScheduleJobService_SetEnabled(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateJob(ctx, createReq("kospi_daily"))
	require.NoError(t, err)

	resp, err := f.svc.SetEnabled(ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, resp.Enabled)
	assert.Nil(t, resp.NextRun)
	assert.False(t, f.sched.Has("kospi_daily"))

	resp, err = f.svc.SetEnabled(ctx, created.ID, true)
	require.NoError(t, err)
	assert.NotNil(t, resp.NextRun)
	assert.True(t, f.sched.Has("kospi_daily"))
}

func TestScheduleJobService_DeleteJob(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	req := createReq("ml_weekly")
	req.JobType = "ml_train"
	created, err := f.svc.CreateJob(ctx, req)
	require.NoError(t, err)

	_, err = f.runner.RunByName(ctx, "ml_weekly", model.TriggerManual)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteJob(ctx, created.ID))
	assert.False(t, f.sched.Has("ml_weekly"))

	for _, m := range []interface{}{&model.ScheduleJob{}, &model.ScheduleLog{}, &model.MLTrainConfig{}} {
		var count int64
		require.NoError(t, f.db.Model(m).Count(&count).Error)
		assert.Zero(t, count)
	}

	assert.ErrorIs(t, f.svc.DeleteJob(ctx, created.ID), ErrJobNotFound)
}

func TestScheduleJobService_RunJobNow(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateJob(ctx, createReq("kospi_daily"))
	require.NoError(t, err)

	resp, err := f.svc.RunJobNow(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotZero(t, resp.LogID)

	require.Eventually(t, func() bool {
		e, err := f.repo.ScheduleLogRepo.FindByID(ctx, resp.LogID)
		return err == nil && e != nil && e.Status.IsTerminal()
	}, 2*time.Second, 10*time.Millisecond)

	_, err = f.svc.RunJobNow(ctx, 999)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduleJobService_ListLogs(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateJob(ctx, createReq("job_a"))
	require.NoError(t, err)
	_, err = f.svc.CreateJob(ctx, createReq("job_b"))
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 120; i++ {
		jobID := a.ID
		if i%2 == 1 {
			jobID = a.ID + 1
		}
		require.NoError(t, f.repo.ScheduleLogRepo.Create(ctx, &model.ScheduleLog{
			JobID:     jobID,
			Status:    model.RunStatusSuccess,
			StartedAt: base.Add(time.Duration(i) * time.Second),
			TriggerBy: model.TriggerScheduler,
		}))
	}

	logs, err := f.svc.ListLogs(ctx, nil, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 20)
	assert.Equal(t, "job_b", *logs[0].JobName)

	logs, err = f.svc.ListLogs(ctx, nil, 100)
	require.NoError(t, err)
	assert.Len(t, logs, 100)

	_, err = f.svc.ListLogs(ctx, nil, 101)
	assert.ErrorIs(t, err, ErrLogLimitTooLarge)

	logs, err = f.svc.ListLogs(ctx, &a.ID, 100)
	require.NoError(t, err)
	assert.Len(t, logs, 60)
	for _, l := range logs {
		assert.Equal(t, a.ID, l.JobID)
	}
}

func TestScheduleJobService_ListJobs(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateJob(ctx, createReq("job_a"))
	require.NoError(t, err)
	off := createReq("job_b")
	off.Enabled = utils.ToPointer(false)
	_, err = f.svc.CreateJob(ctx, off)
	require.NoError(t, err)

	jobs, err := f.svc.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job_a", jobs[0].JobName)
	assert.NotNil(t, jobs[0].NextRun)
	assert.Nil(t, jobs[1].NextRun)
}

// racingJobRepo reports every name as free, as if a concurrent writer
// inserted the row between the existence check and the insert.
type racingJobRepo struct {
	repository.ScheduleJobRepository
}

func (racingJobRepo) ExistsByName(ctx context.Context, name string, excludeID uint, opts ...utils.DBOption) (bool, error) {
	return false, nil
}

func TestScheduleJobService_UniqueIndexRaceIsConflict(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	svc := NewScheduleJobService(
		config.Scheduler{DefaultLogLimit: 20, MaxLogLimit: 100},
		f.sched.Location(),
		logger.FromZap(zaptest.NewLogger(t)),
		racingJobRepo{f.repo.ScheduleJobRepo},
		f.repo.ScheduleLogRepo,
		f.repo.UnitOfWork,
		f.sched,
		f.runner,
	)

	_, err := svc.CreateJob(ctx, createReq("kospi_daily"))
	require.NoError(t, err)
	other, err := svc.CreateJob(ctx, createReq("kosdaq_daily"))
	require.NoError(t, err)

	_, err = svc.CreateJob(ctx, createReq("kospi_daily"))
	assert.ErrorIs(t, err, ErrDuplicateJobName)

	_, err = svc.UpdateJob(ctx, other.ID, dto.UpdateScheduleJobRequest{JobName: utils.ToPointer("kospi_daily")})
	assert.ErrorIs(t, err, ErrDuplicateJobName)

	var count int64
	require.NoError(t, f.db.Model(&model.ScheduleJob{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
