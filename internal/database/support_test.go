package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"courtbook/internal/config"
	"courtbook/internal/models"
	"courtbook/internal/timeslot"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlocks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	saturday := mustDate(t, "2024-06-01")

	require.NoError(t, db.CreateBlock(ctx, &models.Block{
		ID: "lit", Date: &saturday, StartTime: timeslot.Hour(10), EndTime: timeslot.Hour(12), Reason: "maintenance",
	}, saturday))
	require.NoError(t, db.CreateBlock(ctx, &models.Block{
		ID: "rec", Recurring: true, RecurringDay: time.Sunday, StartTime: timeslot.Hour(8), EndTime: timeslot.Hour(10), Reason: "classes",
	}, saturday))
	assert.Error(t, db.CreateBlock(ctx, &models.Block{ID: "bad", StartTime: timeslot.Hour(10), EndTime: timeslot.Hour(9)}, saturday))

	sat, err := db.DaySchedule(ctx, saturday)
	require.NoError(t, err)
	require.Len(t, sat.Blocks, 1)
	assert.Equal(t, "lit", sat.Blocks[0].ID)

	sun, err := db.DaySchedule(ctx, saturday.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, sun.Blocks, 1)
	assert.Equal(t, "rec", sun.Blocks[0].ID)
	assert.Nil(t, sun.Blocks[0].Date)

	nextSun, err := db.DaySchedule(ctx, saturday.AddDate(0, 0, 8))
	require.NoError(t, err)
	assert.Len(t, nextSun.Blocks, 1)

	all, err := db.ListBlocks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, db.DeleteBlock(ctx, "lit"))
	assert.ErrorIs(t, db.DeleteBlock(ctx, "lit"), ErrNotFound)
}

func TestCreateBlock_RejectsCoveredReservation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sunday := mustDate(t, "2024-06-02")

	res := newReservation(sunday, "10:00", 60, "u1")
	_, err := db.CreateReservationAtomic(ctx, res, noOverlap(res))
	require.NoError(t, err)

	tests := []struct {
		name  string
		block *models.Block
		from  time.Time
		taken bool
	}{
		{"Overlapping dated block", &models.Block{ID: "b1", Date: &sunday, StartTime: timeslot.Hour(9), EndTime: timeslot.Hour(12)}, sunday, true},
		{"Full day on the date", &models.Block{ID: "b2", Date: &sunday, IsFullDay: true}, sunday, true},
		{"Adjacent dated block", &models.Block{ID: "b3", Date: &sunday, StartTime: timeslot.Hour(11), EndTime: timeslot.Hour(13)}, sunday, false},
		{"Recurring on the same weekday", &models.Block{ID: "b4", Recurring: true, RecurringDay: time.Sunday, StartTime: timeslot.Hour(10), EndTime: timeslot.Hour(11)}, mustDate(t, "2024-05-30"), true},
		{"Recurring once the reservation is past", &models.Block{ID: "b5", Recurring: true, RecurringDay: time.Sunday, StartTime: timeslot.Hour(10), EndTime: timeslot.Hour(11)}, mustDate(t, "2024-06-03"), false},
		{"Recurring on another weekday", &models.Block{ID: "b6", Recurring: true, RecurringDay: time.Monday, IsFullDay: true}, mustDate(t, "2024-05-30"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.CreateBlock(ctx, tt.block, tt.from)
			if !tt.taken {
				require.NoError(t, err)
				return
			}
			var bc *BlockConflictError
			require.ErrorAs(t, err, &bc)
			assert.Equal(t, res.ID, bc.Reservation.ID)
			assert.ErrorIs(t, err, ErrSlotTaken)
		})
	}

	all, err := db.ListBlocks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3, "rejected blocks are not stored")
}

func TestSettings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, ok, err := db.GetSetting(ctx, models.SettingPricePerHour)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.SeedSettings(ctx, []models.Setting{
		{Key: models.SettingPricePerHour, Value: "5000"},
		{Key: models.SettingBankAlias, Value: "club.cancha"},
	}))
	require.NoError(t, db.SetSetting(ctx, models.SettingPricePerHour, "6500"))
	// seeding again does not overwrite
	require.NoError(t, db.SeedSettings(ctx, []models.Setting{{Key: models.SettingPricePerHour, Value: "5000"}}))

	v, ok, err := db.GetSetting(ctx, models.SettingPricePerHour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "6500", v)

	list, err := db.ListSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestOwners(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	o := &models.Owner{ID: "u1", FullName: "Ana", Email: "ana@example.com", TelegramChatID: 77}
	require.NoError(t, db.UpsertOwner(ctx, o))
	assert.Equal(t, models.RoleUser, o.Role)

	o.CalendarSynced = true
	o.CalendarRefreshToken = "refresh"
	require.NoError(t, db.UpsertOwner(ctx, o))

	got, err := db.GetOwner(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.CalendarSynced)
	assert.Equal(t, "refresh", got.CalendarRefreshToken)
	assert.Equal(t, int64(77), got.TelegramChatID)

	_, err = db.GetOwner(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPaymentsAndAudit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	p := &models.Payment{
		ReservationID: "r1", Amount: 5000, Method: models.PaymentManual,
		Status: models.OutcomeApproved, ExternalReference: models.LedgerReference("r1", models.OutcomeApproved),
	}
	inserted, err := db.RecordPayment(ctx, p)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, p.ID)

	dup := *p
	inserted, err = db.RecordPayment(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	require.NoError(t, db.RecordAudit(ctx, &models.AuditEntry{
		Action: models.AuditReservationCancel, EntityType: "reservation", EntityID: "r1", ActorID: "admin",
	}))
	entries, err := db.ListAudit(ctx, "reservation", "r1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditReservationCancel, entries[0].Action)
}

func TestSyncQueueCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{
		TaskType:      models.SyncTaskUpsert,
		ReservationID: "r100",
		Payload:       `{"id":"r100"}`,
	}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	assert.Equal(t, models.SyncStatusPending, task.Status)

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "r100", tasks[0].ReservationID)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, tasks[0].ID, models.SyncStatusCompleted, "", nil))
	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	done, err := db.GetSyncTask(ctx, task.ID)
	require.NoError(t, err)
	assert.NotNil(t, done.ProcessedAt)

	errMsg := "calendar unavailable"
	require.NoError(t, db.CreateSyncTask(ctx, &models.SyncTask{
		TaskType: models.SyncTaskDelete, ReservationID: "r101", Status: models.SyncStatusFailed, LastError: &errMsg,
	}))
	failed, err := db.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, errMsg, *failed[0].LastError)

	retry := &models.SyncTask{TaskType: models.SyncTaskUpsert, ReservationID: "r102"}
	require.NoError(t, db.CreateSyncTask(ctx, retry))
	next := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, retry.ID, models.SyncStatusRetry, "temporary", &next))

	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks, "retry scheduled in the future is not due")

	got, err := db.GetSyncTask(ctx, retry.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RetryCount)

	_, err = db.GetSyncTask(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBackupService(t *testing.T) {
	tempDir := t.TempDir()
	logger := zerolog.Nop()

	db, err := NewDB(filepath.Join(tempDir, "court.db"), &logger)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.SetSetting(context.Background(), models.SettingBankAlias, "alias"))

	storagePath := filepath.Join(tempDir, "backups")
	s := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: storagePath, RetentionDays: 1}, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(context.Background())
		require.NoError(t, err)
		assert.FileExists(t, path)

		restored, err := NewDB(path, &logger)
		require.NoError(t, err)
		defer restored.Close()
		v, ok, err := restored.GetSetting(context.Background(), models.SettingBankAlias)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "alias", v)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, backupPrefix+"old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		foreign := filepath.Join(storagePath, "notes.txt")
		require.NoError(t, os.WriteFile(foreign, []byte("keep"), 0o644))

		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))
		require.NoError(t, os.Chtimes(foreign, oldTime, oldTime))

		s.CleanupOldBackups()

		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, foreign)
	})
}

func TestBackupService_Disabled(t *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(setupTestDB(t), config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { s.Start(ctx) })
}
