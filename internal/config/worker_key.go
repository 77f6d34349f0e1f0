package config

type WorkerKeyStruct struct {
	PersistHeartbeatsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistHeartbeatsQueue: "persist_heartbeats_queue",
}
