package s7conn

import (
	"context"
	"fmt"

	"github.com/arloliu/go-s7/s7"
)

func (c *Connection) doHandshake(ctx context.Context) error {
	c.stateMgr.to(TransportConnecting)
	if err := c.linker.Transport().Open(ctx); err != nil {
		return err
	}

	if c.cfg.transportKind == s7.Ppi {
		c.stateMgr.to(ReferenceEstablishing)
		if err := c.requestPPILink(ctx); err != nil {
			return err
		}

		c.stateMgr.to(AssociationEstablishing)

		return c.confirmPPILink(ctx)
	}

	c.stateMgr.to(ReferenceEstablishing)
	if err := c.createReference(ctx); err != nil {
		return err
	}

	c.stateMgr.to(AssociationEstablishing)

	return c.establishAssociation(ctx)
}

// createReference sends the ISO connection request and expects a connection confirm.
func (c *Connection) createReference(ctx context.Context) error {
	frame, err := s7.FormatCreateReference(c.cfg.profile.CreateReferenceInput())
	if err != nil {
		return err
	}

	resp, err := c.linker.SendReceiveRaw(ctx, frame)
	if err != nil {
		return fmt.Errorf("create reference: %w", err)
	}
	if resp[5] != s7.COTPConnectConfirm {
		return fmt.Errorf("%w: create reference answered with COTP type 0x%02X", ErrHandshake, resp[5])
	}

	out, err := s7.UnformatCreateReference(resp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	c.logger.Debug("s7conn: reference created", "tdpuSize", out.TdpuSize, "srcTsap", out.SrcTsap, "dstTsap", out.DstTsap)

	return nil
}

// establishAssociation negotiates the PDU size.
func (c *Connection) establishAssociation(ctx context.Context) error {
	in := c.cfg.profile.EstablishAssociationInput(c.nextPduRef())

	unit, err := s7.FormatEstablishAssociation(in)
	if err != nil {
		return err
	}

	resp, err := c.linker.SendReceive(ctx, unit)
	if err != nil {
		return fmt.Errorf("establish association: %w", err)
	}

	out, err := s7.UnformatEstablishAssociation(resp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if out.PduRef != in.PduRef {
		return fmt.Errorf("%w: association reply %d to request %d", ErrPduRefMismatch, out.PduRef, in.PduRef)
	}
	if out.MaxPdu == 0 {
		return fmt.Errorf("%w: device negotiated a zero PDU size", ErrHandshake)
	}

	c.maxPdu.Store(uint32(out.MaxPdu))
	c.logger.Debug("s7conn: association established", "maxCalling", out.MaxCalling, "maxCalled", out.MaxCalled, "maxPdu", out.MaxPdu)

	return nil
}

// requestPPILink sends the PPI link request.
func (c *Connection) requestPPILink(ctx context.Context) error {
	frame, err := s7.FormatComCreateReference(s7.ComCreateReferenceInput{
		SlaveAddress:  c.cfg.slaveAddress,
		MasterAddress: c.cfg.masterAddress,
	})
	if err != nil {
		return err
	}

	resp, err := c.linker.SendReceiveRaw(ctx, frame)
	if err != nil {
		return fmt.Errorf("ppi link request: %w", err)
	}

	out, err := s7.UnformatCom(resp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	if !out.ShortAck && out.SlaveAddress != c.cfg.slaveAddress {
		return fmt.Errorf("%w: link request answered by station %d", ErrHandshake, out.SlaveAddress)
	}

	return nil
}

// confirmPPILink fetches the answer to the link request.
func (c *Connection) confirmPPILink(ctx context.Context) error {
	frame, err := s7.FormatComConfirmMessage(s7.ComConfirmMessageInput{
		SlaveAddress:  c.cfg.slaveAddress,
		MasterAddress: c.cfg.masterAddress,
	})
	if err != nil {
		return err
	}

	resp, err := c.linker.SendReceiveRaw(ctx, frame)
	if err != nil {
		return fmt.Errorf("ppi confirm: %w", err)
	}

	if _, err := s7.UnformatCom(resp); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	return nil
}
