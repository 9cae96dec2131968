package main

import (
	"log"
	"os"

	"github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/subject"
	"github.com/trezcool/mahudhurio/core/user"
	"github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/storage/database"
	"github.com/trezcool/mahudhurio/storage/database/dummy"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lshortfile)

	var appLogger core.Logger
	if core.Conf.Debug {
		appLogger = logsvc.NewStdLogger(std)
	} else {
		appLogger = logsvc.NewRollbarLogger(std, core.Conf)
	}

	var (
		sessionRepo attendance.SessionRepository
		markRepo    attendance.MarkRepository
		subjectRepo subject.Repository
		userRepo    user.Repository
	)
	if core.Conf.Debug {
		// in-mem storage; no local postgres needed
		db, err := dummydb.Open()
		errAndDie(std, err)
		sessionRepo = dummydb.NewSessionRepository(db)
		markRepo = dummydb.NewMarkRepository(db)
		subjectRepo = dummydb.NewSubjectRepository(db)
		userRepo = dummydb.NewUserRepository(db)
	} else {
		errAndDie(std, database.CreateIfNotExist(core.Conf))

		db, err := database.Open(core.Conf)
		errAndDie(std, err)
		defer func() { _ = db.Close() }()

		errAndDie(std, database.Migrate(db.DB))

		sessionRepo = database.NewSessionRepository(db)
		markRepo = database.NewMarkRepository(db)
		subjectRepo = database.NewSubjectRepository(db)
		userRepo = database.NewUserRepository(db)
	}

	// set up services
	broadcaster := attendance.NewBroadcaster()
	usrSvc := user.NewService(userRepo)
	subjSvc := subject.NewService(subjectRepo)
	attSvc := attendance.NewService(sessionRepo, markRepo, subjectRepo, userRepo, broadcaster, appLogger)

	// start API server
	app := echoapi.NewServer(
		&echoapi.Options{
			Addr:          core.Conf.Server.Addr,
			Logger:        appLogger,
			UserSvc:       usrSvc,
			SubjectSvc:    subjSvc,
			AttendanceSvc: attSvc,
			Broadcaster:   broadcaster,
		},
	)
	app.Start()
}

func errAndDie(std *log.Logger, err error) {
	if err != nil {
		std.Fatal(err)
	}
}
