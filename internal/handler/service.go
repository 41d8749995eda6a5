package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ClinicServiceName = "clinic.v1.ClinicService"
	AdminServiceName  = "clinic.v1.AdminService"
)

// ClinicServer is the public and member-facing API.
type ClinicServer interface {
	Register(context.Context, *RegisterRequest) (*AuthResponse, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	Logout(context.Context, *Empty) (*Empty, error)
	Me(context.Context, *Empty) (*UserResponse, error)
	GetSettings(context.Context, *Empty) (*SettingsResponse, error)
	Departments(context.Context, *Empty) (*DepartmentsResponse, error)
	Doctors(context.Context, *Empty) (*DoctorsResponse, error)
	Calendar(context.Context, *Empty) (*CalendarResponse, error)
	Availability(context.Context, *AvailabilityRequest) (*AvailabilityResponse, error)
	Book(context.Context, *BookRequest) (*AppointmentResponse, error)
	Triage(context.Context, *TriageRequest) (*TriageResponse, error)
	MyAppointments(context.Context, *ListRequest) (*AppointmentsResponse, error)
	CancelAppointment(context.Context, *CancelRequest) (*AppointmentResponse, error)
	ToggleReminder(context.Context, *ReminderRequest) (*ReminderResponse, error)
	Notifications(context.Context, *Empty) (*NotificationsResponse, error)
}

// AdminServer is reachable by admin sessions only.
type AdminServer interface {
	ListAppointments(context.Context, *ListRequest) (*AppointmentsResponse, error)
	UpdateAppointment(context.Context, *UpdateAppointmentRequest) (*AppointmentResponse, error)
	CompleteAppointment(context.Context, *IDRequest) (*AppointmentResponse, error)
	DeleteAppointment(context.Context, *IDRequest) (*Empty, error)
	Dashboard(context.Context, *Empty) (*DashboardResponse, error)
	UpdateDoctor(context.Context, *UpdateDoctorRequest) (*DoctorResponse, error)
	UpdateSettings(context.Context, *UpdateSettingsRequest) (*SettingsResponse, error)
	ListUsers(context.Context, *UsersRequest) (*UsersResponse, error)
	UpdateUser(context.Context, *UpdateUserRequest) (*UserResponse, error)
	DeleteUser(context.Context, *IDRequest) (*Empty, error)
	AddMedicalRecord(context.Context, *MedicalRecordRequest) (*MedicalRecordResponse, error)
}

// unary builds a method descriptor around a typed call.
func unary[S, Req, Resp any](service, name string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + service + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "bad request: %v", status.Convert(err).Message())
			}
			s := srv.(S)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var ClinicServiceDesc = grpc.ServiceDesc{
	ServiceName: ClinicServiceName,
	HandlerType: (*ClinicServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ClinicServiceName, "Register", ClinicServer.Register),
		unary(ClinicServiceName, "Login", ClinicServer.Login),
		unary(ClinicServiceName, "Logout", ClinicServer.Logout),
		unary(ClinicServiceName, "Me", ClinicServer.Me),
		unary(ClinicServiceName, "GetSettings", ClinicServer.GetSettings),
		unary(ClinicServiceName, "Departments", ClinicServer.Departments),
		unary(ClinicServiceName, "Doctors", ClinicServer.Doctors),
		unary(ClinicServiceName, "Calendar", ClinicServer.Calendar),
		unary(ClinicServiceName, "Availability", ClinicServer.Availability),
		unary(ClinicServiceName, "Book", ClinicServer.Book),
		unary(ClinicServiceName, "Triage", ClinicServer.Triage),
		unary(ClinicServiceName, "MyAppointments", ClinicServer.MyAppointments),
		unary(ClinicServiceName, "CancelAppointment", ClinicServer.CancelAppointment),
		unary(ClinicServiceName, "ToggleReminder", ClinicServer.ToggleReminder),
		unary(ClinicServiceName, "Notifications", ClinicServer.Notifications),
	},
	Metadata: "clinic/v1/clinic.proto",
}

var AdminServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(AdminServiceName, "ListAppointments", AdminServer.ListAppointments),
		unary(AdminServiceName, "UpdateAppointment", AdminServer.UpdateAppointment),
		unary(AdminServiceName, "CompleteAppointment", AdminServer.CompleteAppointment),
		unary(AdminServiceName, "DeleteAppointment", AdminServer.DeleteAppointment),
		unary(AdminServiceName, "Dashboard", AdminServer.Dashboard),
		unary(AdminServiceName, "UpdateDoctor", AdminServer.UpdateDoctor),
		unary(AdminServiceName, "UpdateSettings", AdminServer.UpdateSettings),
		unary(AdminServiceName, "ListUsers", AdminServer.ListUsers),
		unary(AdminServiceName, "UpdateUser", AdminServer.UpdateUser),
		unary(AdminServiceName, "DeleteUser", AdminServer.DeleteUser),
		unary(AdminServiceName, "AddMedicalRecord", AdminServer.AddMedicalRecord),
	},
	Metadata: "clinic/v1/admin.proto",
}

// Register attaches both services to srv.
func Register(srv grpc.ServiceRegistrar, h *Handler) {
	srv.RegisterService(&ClinicServiceDesc, h)
	srv.RegisterService(&AdminServiceDesc, h)
}
