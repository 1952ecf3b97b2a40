package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/darasahub/darasa/apps/api/echo"
	"github.com/darasahub/darasa/core"
	"github.com/darasahub/darasa/core/course"
	"github.com/darasahub/darasa/core/submission"
	"github.com/darasahub/darasa/core/user"
	logsvc "github.com/darasahub/darasa/services/logger"
	"github.com/darasahub/darasa/storage/database"
	sqlxrepos "github.com/darasahub/darasa/storage/database/sqlx"
	"github.com/darasahub/darasa/storage/files"
)

func main() {
	std := log.New(os.Stdout, core.Conf.AppName+" : ", log.LstdFlags|log.Lshortfile)

	var logger core.Logger
	if core.Conf.Debug {
		logger = logsvc.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, core.Conf)
	}

	// set up DB
	db, err := database.Open(core.Conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()
	errAndDie(database.Ping(db))
	errAndDie(database.Migrate(db))
	dbx := sqlx.NewDb(db, core.Conf.Database.Engine)

	// set up file storage
	store, err := files.NewStore(core.Conf.Upload.Dir)
	errAndDie(err)

	// set up services
	usrRepo := sqlxrepos.NewUserRepository(dbx)
	courseRepo := sqlxrepos.NewCourseRepository(dbx)
	subRepo := sqlxrepos.NewSubmissionRepository(dbx)

	usrSvc := user.NewService(usrRepo)
	courseSvc := course.NewService(courseRepo, store, logger)
	subSvc := submission.NewService(subRepo, courseRepo, store, logger)

	// start API server
	app := echoapi.NewServer(
		&echoapi.Options{
			Addr:          core.Conf.Server.Address(),
			UserSvc:       usrSvc,
			CourseSvc:     courseSvc,
			SubmissionSvc: subSvc,
			Store:         store,
			Logger:        logger,
		},
	)
	app.Start()
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
