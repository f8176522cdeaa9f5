// Package logger expone un logger Zap único con scoping por contexto.
//
// Init se llama una vez desde cmd/. Los middlewares HTTP inyectan un logger
// con request_id, method y path via ToContext; managers y repositorios lo
// recuperan con From(ctx) y agregan Layer/Op:
//
//	log := logger.From(ctx).With(logger.Layer("invitation"), logger.Op("Accept"))
//	log.Info("invitation accepted", logger.InvitationID(id))
//
// Sin contexto se usa el singleton:
//
//	logger.L().Info("posguard starting")
package logger
