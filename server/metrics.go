package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	onlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shareroom_online_users",
		Help: "Number of currently connected clients.",
	})
	activeRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shareroom_active_rooms",
		Help: "Number of live rooms.",
	})
	textsShared = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shareroom_texts_shared_total",
		Help: "Text messages broadcast to rooms.",
	})
	filesShared = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shareroom_files_shared_total",
		Help: "File shares accepted and broadcast.",
	})
	filesDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shareroom_files_deleted_total",
		Help: "Shared files deleted by room creators.",
	})
)

func init() {
	prometheus.MustRegister(onlineUsers, activeRooms, textsShared, filesShared, filesDeleted)
}
